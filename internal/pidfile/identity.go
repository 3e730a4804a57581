package pidfile

import "fmt"

// Identity is one observation of a filesystem object. Two observations
// refer to the same object when device, inode and mode all match; the link
// count is carried for the single-link check but is not part of identity.
type Identity struct {
	Device uint64
	Inode  uint64
	Mode   uint32
	Links  uint64
}

// SameObject reports whether id and other describe the same filesystem object.
func (id Identity) SameObject(other Identity) bool {
	return id.Device == other.Device &&
		id.Inode == other.Inode &&
		id.Mode == other.Mode
}

// IsRegular reports whether the observed object is a regular file.
func (id Identity) IsRegular() bool {
	return isRegular(id.Mode)
}

func (id Identity) String() string {
	return fmt.Sprintf("dev=%d ino=%d mode=%#o nlink=%d", id.Device, id.Inode, id.Mode, id.Links)
}
