package cache

import "fmt"

func SearchResultKey(fingerprint string) string {
	return fmt.Sprintf("search:result:%s", fingerprint)
}

func JobStatusKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func ProgressKey(jobID string) string {
	return fmt.Sprintf("progress:%s", jobID)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
