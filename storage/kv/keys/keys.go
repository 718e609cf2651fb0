package keys

import (
	"bytes"
)

// Key is a single key
type Key []byte

// Compare compares two keys
// -1 means a < b
// 1 means a > b
// 0 means a = b
func Compare(a, b Key) int {
	return bytes.Compare(a, b)
}

// Inc treats key as a big-endian unsigned integer
// and returns key + 1 without modifying key. It
// returns nil if every byte of key is 0xff since
// there is no key with the same length after it.
func Inc(key Key) Key {
	carry := true
	after := make(Key, len(key))

	copy(after, key)

	for i := len(after) - 1; i >= 0 && carry; i-- {
		if key[i] < 0xff {
			carry = false
		}

		after[i] = key[i] + 1
	}

	// carry will only be true if all elements of k
	// were equal to 0xff. The range should just go
	// all the way to the end of the real key range.
	if carry {
		return nil
	}

	return after
}

// Next returns the key directly after key such that
// no other key can sort between the two
func Next(key Key) Key {
	next := make(Key, len(key)+1)

	copy(next, key)

	return next
}

// Join concatenates key parts with no separator
func Join(parts ...[]byte) Key {
	size := 0

	for _, part := range parts {
		size += len(part)
	}

	key := make(Key, 0, size)

	for _, part := range parts {
		key = append(key, part...)
	}

	return key
}
