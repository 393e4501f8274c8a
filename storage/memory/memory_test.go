package memory

import (
	"testing"

	"github.com/jmcleod/lockbox/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, New())
}
