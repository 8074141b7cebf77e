//go:build !linux

package mountns

type unsupportedNS struct{}

func newPlatform() Interface {
	return unsupportedNS{}
}

func (unsupportedNS) Supported() bool {
	return false
}

func (unsupportedNS) Current() (Handle, error) {
	return nil, ErrNotSupported
}

func (unsupportedNS) Unshare() error {
	return ErrNotSupported
}
