package instance

import "os"

// GetID returns the process instance identifier, preferring the platform's dyno name.
func GetID() string {
	for _, key := range []string{"DYNO", "INSTANCE_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
