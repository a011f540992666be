package cache

import "fmt"

const defaultLockPrefix = "carrier:sync:lock:"

func lockKey(prefix, storeKey string) string {
	return fmt.Sprintf("%s%s", prefix, storeKey)
}
