package rabbit

import (
	"time"
)

func retry(n int, sleep time.Duration, fn func() error) error {
	var err error
	for i := range n {
		if err = fn(); err == nil {
			return nil
		}
		if i < n-1 {
			time.Sleep(sleep)
		}
	}
	return err
}
