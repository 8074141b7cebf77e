package mount

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/submount/submount/internal/optstr"
)

// flagNames maps option names to mount(2) flags. Clear entries remove the
// flag instead of setting it.
var flagNames = map[string]struct {
	clear bool
	flag  uintptr
}{
	"defaults":      {false, 0},
	"ro":            {false, unix.MS_RDONLY},
	"rw":            {true, unix.MS_RDONLY},
	"suid":          {true, unix.MS_NOSUID},
	"nosuid":        {false, unix.MS_NOSUID},
	"dev":           {true, unix.MS_NODEV},
	"nodev":         {false, unix.MS_NODEV},
	"exec":          {true, unix.MS_NOEXEC},
	"noexec":        {false, unix.MS_NOEXEC},
	"sync":          {false, unix.MS_SYNCHRONOUS},
	"async":         {true, unix.MS_SYNCHRONOUS},
	"dirsync":       {false, unix.MS_DIRSYNC},
	"remount":       {false, unix.MS_REMOUNT},
	"mand":          {false, unix.MS_MANDLOCK},
	"nomand":        {true, unix.MS_MANDLOCK},
	"atime":         {true, unix.MS_NOATIME},
	"noatime":       {false, unix.MS_NOATIME},
	"diratime":      {true, unix.MS_NODIRATIME},
	"nodiratime":    {false, unix.MS_NODIRATIME},
	"bind":          {false, unix.MS_BIND},
	"rbind":         {false, unix.MS_BIND | unix.MS_REC},
	"relatime":      {false, unix.MS_RELATIME},
	"norelatime":    {true, unix.MS_RELATIME},
	"strictatime":   {false, unix.MS_STRICTATIME},
	"nostrictatime": {true, unix.MS_STRICTATIME},
	"lazytime":      {false, unix.MS_LAZYTIME},
	"nolazytime":    {true, unix.MS_LAZYTIME},
	"silent":        {false, unix.MS_SILENT},
	"loud":          {true, unix.MS_SILENT},
	"private":       {false, unix.MS_PRIVATE},
	"rprivate":      {false, unix.MS_PRIVATE | unix.MS_REC},
	"shared":        {false, unix.MS_SHARED},
	"rshared":       {false, unix.MS_SHARED | unix.MS_REC},
	"slave":         {false, unix.MS_SLAVE},
	"rslave":        {false, unix.MS_SLAVE | unix.MS_REC},
	"unbindable":    {false, unix.MS_UNBINDABLE},
	"runbindable":   {false, unix.MS_UNBINDABLE | unix.MS_REC},
}

// ignoredNames are mount(8)-level options with no kernel counterpart.
var ignoredNames = map[string]bool{
	"auto":    true,
	"noauto":  true,
	"user":    true,
	"nouser":  true,
	"users":   true,
	"owner":   true,
	"group":   true,
	"nofail":  true,
	"_netdev": true,
}

// parseOptions maps an option string to mount(2) flags and the data string
// passed to the kernel. Userspace options (X-*, x-*) and mount(8)-only
// names are dropped; everything else the flag table does not know goes into
// the data string untouched.
func parseOptions(options string) (uintptr, string) {
	var flags uintptr
	var data []string

	for _, opt := range optstr.Parse(options) {
		if strings.HasPrefix(opt.Name, "X-") || strings.HasPrefix(opt.Name, "x-") {
			continue
		}
		if ignoredNames[opt.Name] {
			continue
		}

		if !opt.HasValue {
			if f, ok := flagNames[opt.Name]; ok {
				if f.clear {
					flags &^= f.flag
				} else {
					flags |= f.flag
				}
				continue
			}
		}

		elem := opt.Name
		if opt.HasValue {
			elem += "=" + opt.Value
		}
		data = append(data, elem)
	}

	return flags, strings.Join(data, ",")
}
