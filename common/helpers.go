package common

import "os/user"

// IsRunningAsRoot reports whether the process may install a system service
// and open /dev/i2c-* and /dev/gpiomem.
func IsRunningAsRoot() bool {
	usr, err := user.Current()
	if err != nil {
		return false
	}
	return usr.Uid == "0"
}
