package quiver

import "strconv"

// Entity is an integer handle identifying a bundle of attached components.
// Handles are dense: a handle is known to a container iff its value is less
// than the number of entities the container has ever created. Removed handles
// are recycled.
type Entity uint32

func (e Entity) String() string {
	return strconv.Itoa(int(e))
}
