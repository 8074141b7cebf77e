package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/docker/go-plugins-helpers/volume"
	"golang.org/x/sys/unix"

	"github.com/submount/submount/internal/log"
	"github.com/submount/submount/internal/mount"
	"github.com/submount/submount/internal/subdir"
	"github.com/submount/submount/internal/validation"
)

// Driver implements the Docker volume plugin interface. Each volume is
// a top-level subdirectory of one backing filesystem; the backing
// filesystem itself is never mounted in the host namespace. Maintenance
// operations touch it through a private mount window, and Mount exposes
// a single subdirectory through the staged mount pipeline.
type Driver struct {
	mu        sync.Mutex
	device    string
	fstype    string
	mountPath string
	sub       *subdir.Subdir
	mounter   mount.Mounter
}

// NewDriver creates a new volume driver. device must already be
// resolved to a device node path.
func NewDriver(
	device string,
	fstype string,
	mountPath string,
	sub *subdir.Subdir,
	mounter mount.Mounter,
) *Driver {
	return &Driver{
		device:    device,
		fstype:    fstype,
		mountPath: mountPath,
		sub:       sub,
		mounter:   mounter,
	}
}

// withBacking mounts the backing filesystem inside a private mount
// window and runs fn against its root. The mount never becomes visible
// outside the window.
func (d *Driver) withBacking(fn func(root string) error) error {
	return d.sub.WithPrivateTarget(d.mounter, func(root string) error {
		if err := d.mounter.Mount(d.device, root, d.fstype, 0, ""); err != nil {
			return fmt.Errorf("mount backing filesystem: %w", err)
		}
		return fn(root)
	})
}

// Create creates a new volume
func (d *Driver) Create(req *volume.CreateRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	log.Debug("creating volume", "name", req.Name, "options", req.Options)

	if err := validation.ValidateVolumeName(req.Name); err != nil {
		return err
	}

	// The only supported option is "mode", the permission bits for the
	// volume directory
	dirMode := os.FileMode(0o755)
	modeStr := req.Options["mode"]
	if modeStr != "" {
		parsed, err := strconv.ParseUint(modeStr, 8, 32)
		if err != nil {
			return fmt.Errorf("invalid mode %q: %w", modeStr, err)
		}
		dirMode = os.FileMode(parsed)
	}
	for k := range req.Options {
		if k != "mode" {
			log.Warn("ignoring unsupported volume option", "name", req.Name, "option", k)
		}
	}

	err := d.withBacking(func(root string) error {
		path := filepath.Join(root, req.Name)

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("volume %s already exists", req.Name)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("stat volume: %w", err)
		}

		if err := os.Mkdir(path, dirMode); err != nil {
			return fmt.Errorf("create volume directory: %w", err)
		}
		if modeStr != "" {
			// Mkdir is subject to the umask, an explicit mode is not
			if err := os.Chmod(path, dirMode); err != nil {
				return fmt.Errorf("set volume directory mode: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("volume created", "name", req.Name)
	return nil
}

// Remove removes a volume
func (d *Driver) Remove(req *volume.RemoveRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	log.Debug("removing volume", "name", req.Name)

	if err := validation.ValidateVolumeName(req.Name); err != nil {
		return err
	}

	// Unmount first so the data is removed on the backing filesystem,
	// not through a live bind mount
	mountPoint := d.mountPointPath(req.Name)
	mounted, err := d.mounter.IsMounted(mountPoint)
	if err != nil {
		return fmt.Errorf("check mount status: %w", err)
	}
	if mounted {
		if err := d.mounter.Unmount(mountPoint); err != nil {
			return fmt.Errorf("unmount: %w", err)
		}
	}

	err = d.withBacking(func(root string) error {
		path := filepath.Join(root, req.Name)

		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("volume %s not found", req.Name)
			}
			return fmt.Errorf("stat volume: %w", err)
		}

		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("remove volume directory: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Remove mount directory if it exists
	if err := os.RemoveAll(mountPoint); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove mount directory", "path", mountPoint, "error", err)
	}

	log.Info("volume removed", "name", req.Name)
	return nil
}

// Mount mounts a volume
func (d *Driver) Mount(req *volume.MountRequest) (*volume.MountResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	log.Debug("mounting volume", "name", req.Name, "id", req.ID)

	if err := validation.ValidateVolumeName(req.Name); err != nil {
		return nil, err
	}

	mountPoint := d.mountPointPath(req.Name)

	mounted, err := d.mounter.IsMounted(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("check mount status: %w", err)
	}
	if mounted {
		log.Debug("volume already mounted", "name", req.Name, "path", mountPoint)
		return &volume.MountResponse{Mountpoint: mountPoint}, nil
	}

	if err := d.prepareMountPoint(mountPoint); err != nil {
		return nil, fmt.Errorf("prepare mount point: %w", err)
	}

	// The pipeline mounts the backing filesystem at a hidden location
	// and binds only the volume subdirectory onto the mount point. A
	// missing volume surfaces as a failed bind.
	r := mount.NewRequest(d.device, mountPoint, d.fstype,
		subdir.OptionName+"="+req.Name, mount.OriginTable)
	mctx := mount.NewContext(r,
		mount.WithMounter(d.mounter),
		mount.WithHooksets(d.sub.Hookset()))

	err = mctx.Mount()
	if derr := mctx.Deinit(); derr != nil {
		log.Warn("mount context deinit", "name", req.Name, "error", derr)
	}
	if err != nil {
		return nil, fmt.Errorf("mount volume: %w", err)
	}

	log.Info("volume mounted", "name", req.Name, "device", d.device, "path", mountPoint)
	return &volume.MountResponse{Mountpoint: mountPoint}, nil
}

// Unmount unmounts a volume
func (d *Driver) Unmount(req *volume.UnmountRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	log.Debug("unmounting volume", "name", req.Name, "id", req.ID)

	if err := validation.ValidateVolumeName(req.Name); err != nil {
		return err
	}

	mountPoint := d.mountPointPath(req.Name)

	mounted, err := d.mounter.IsMounted(mountPoint)
	if err != nil {
		return fmt.Errorf("check mount status: %w", err)
	}
	if !mounted {
		log.Debug("volume not mounted", "name", req.Name)
		return nil
	}

	if err := d.mounter.Unmount(mountPoint); err != nil {
		return fmt.Errorf("unmount: %w", err)
	}

	// Remove mountpoint directory
	if err := os.Remove(mountPoint); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove mountpoint directory", "path", mountPoint, "error", err)
	}

	log.Info("volume unmounted", "name", req.Name)
	return nil
}

// Path returns the mount path for a volume
func (d *Driver) Path(req *volume.PathRequest) (*volume.PathResponse, error) {
	log.Debug("getting path", "name", req.Name)

	if err := validation.ValidateVolumeName(req.Name); err != nil {
		return nil, err
	}

	mountPoint := d.mountPointPath(req.Name)

	mounted, err := d.mounter.IsMounted(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("check mount status: %w", err)
	}
	if !mounted {
		return nil, fmt.Errorf("volume %s is not mounted", req.Name)
	}

	return &volume.PathResponse{Mountpoint: mountPoint}, nil
}

// Get returns information about a volume
func (d *Driver) Get(req *volume.GetRequest) (*volume.GetResponse, error) {
	log.Debug("getting volume info", "name", req.Name)

	if err := validation.ValidateVolumeName(req.Name); err != nil {
		return nil, err
	}

	var created string
	var status map[string]any

	err := d.withBacking(func(root string) error {
		path := filepath.Join(root, req.Name)

		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("volume %s not found", req.Name)
			}
			return fmt.Errorf("stat volume: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("volume %s is not a directory", req.Name)
		}
		created = info.ModTime().Format(time.RFC3339)

		// Space numbers describe the whole backing filesystem, which
		// all volumes share
		var st unix.Statfs_t
		if err := unix.Statfs(path, &st); err == nil {
			status = map[string]any{
				"device": d.device,
				"total":  st.Blocks * uint64(st.Bsize),
				"used":   (st.Blocks - st.Bfree) * uint64(st.Bsize),
				"free":   st.Bavail * uint64(st.Bsize),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	mountPoint := d.mountPointPath(req.Name)
	var currentMountPoint string
	if mounted, err := d.mounter.IsMounted(mountPoint); err == nil && mounted {
		currentMountPoint = mountPoint
	}

	return &volume.GetResponse{
		Volume: &volume.Volume{
			Name:       req.Name,
			Mountpoint: currentMountPoint,
			CreatedAt:  created,
			Status:     status,
		},
	}, nil
}

// List returns all volumes
func (d *Driver) List() (*volume.ListResponse, error) {
	log.Debug("listing volumes")

	var names []string
	err := d.withBacking(func(root string) error {
		entries, err := os.ReadDir(root)
		if err != nil {
			return fmt.Errorf("read backing filesystem root: %w", err)
		}

		for _, entry := range entries {
			// Skip foreign entries such as lost+found
			if !entry.IsDir() || !validation.IsVolumeName(entry.Name()) {
				continue
			}
			names = append(names, entry.Name())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var volumes []*volume.Volume
	for _, name := range names {
		mountPoint := d.mountPointPath(name)

		var currentMountPoint string
		if mounted, err := d.mounter.IsMounted(mountPoint); err == nil && mounted {
			currentMountPoint = mountPoint
		}

		volumes = append(volumes, &volume.Volume{
			Name:       name,
			Mountpoint: currentMountPoint,
		})
	}

	return &volume.ListResponse{Volumes: volumes}, nil
}

// Capabilities returns the driver capabilities
func (d *Driver) Capabilities() *volume.CapabilitiesResponse {
	return &volume.CapabilitiesResponse{
		Capabilities: volume.Capability{
			Scope: "local",
		},
	}
}

// mountPointPath returns the mount point path for a volume
func (d *Driver) mountPointPath(name string) string {
	return filepath.Join(d.mountPath, name)
}

// prepareMountPoint prepares the mount point directory
func (d *Driver) prepareMountPoint(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("mount point %s exists but is not a directory", path)
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return fmt.Errorf("read directory: %w", err)
		}

		if len(entries) > 0 {
			return fmt.Errorf("mount point %s exists and is not empty", path)
		}

		// Empty directory, recreate with proper permissions
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove existing directory: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat mount point: %w", err)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("create mount point: %w", err)
	}

	return nil
}
