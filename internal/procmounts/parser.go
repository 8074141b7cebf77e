package procmounts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Read through /proc/self so the table reflects the mount namespace this
// process is actually in.
const procMountsPath = "/proc/self/mounts"

// Parse returns all entries of the calling process's mount table.
func Parse() ([]Entry, error) {
	file, err := os.Open(procMountsPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", procMountsPath, err)
	}
	defer file.Close()

	mounts, err := parse(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", procMountsPath, err)
	}

	return mounts, nil
}

func parse(r io.Reader) ([]Entry, error) {
	var mounts []Entry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}

		mounts = append(mounts, Entry{
			Device:     Unescape(fields[0]),
			MountPoint: Unescape(fields[1]),
			FSType:     fields[2],
			Options:    fields[3],
		})
	}

	return mounts, scanner.Err()
}

// Unescape decodes the octal escapes the kernel and fstab use in mount
// fields: \040 space, \011 tab, \012 newline, \134 backslash.
func Unescape(s string) string {
	s = strings.ReplaceAll(s, "\\040", " ")
	s = strings.ReplaceAll(s, "\\011", "\t")
	s = strings.ReplaceAll(s, "\\012", "\n")
	s = strings.ReplaceAll(s, "\\134", "\\")
	return s
}
