package utils

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// RandomInt32 生成一个安全的随机32位整数
func RandomInt32() int32 {
	var num int32
	err := binary.Read(rand.Reader, binary.BigEndian, &num)
	if err != nil {
		panic("generate random int32 failed")
	}

	return num
}

// RandomString36 生成指定长度的随机base36字符串
func RandomString36(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("generate random string failed")
	}
	for i := range buf {
		buf[i] = base36[int(buf[i])%len(base36)]
	}
	return string(buf)
}

// NewNonce 生成播报触发的去重标识: 毫秒时间戳 + 随机后缀
// 保证每次真实触发的nonce都不同，显示端以此区分"新事件"和"快照重放"
func NewNonce() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), RandomString36(8))
}
