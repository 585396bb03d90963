package builddriver

import "os"

func defaultLookupEnv(name string) (string, bool) {
	return os.LookupEnv(name)
}
