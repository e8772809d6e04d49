package ffmpeg

import "os/exec"

// binaryAvailable checks if a binary is available in the system PATH.
func binaryAvailable(binName string) (string, bool) {
	path, err := exec.LookPath(binName)

	return path, err == nil
}
