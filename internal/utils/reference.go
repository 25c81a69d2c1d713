package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const referenceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateReference generates a unique reference for transactions
func GenerateReference(prefix string) string {
	result := make([]byte, 10)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referenceCharset))))
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			panic(fmt.Sprintf("reference: %v", err))
		}
		result[i] = referenceCharset[n.Int64()]
	}

	timestamp := time.Now().UTC().Format("20060102")
	return fmt.Sprintf("%s_%s_%s", prefix, timestamp, string(result))
}
