package directory

import (
	"context"

	"github.com/mosaicnetworks/axolotl/src/common"
)

// Chain queries a list of directories in order and returns the first hit.
// Announcements go to every member that is a Registrar.
type Chain []Directory

// Lookup implements the Directory interface.
func (c Chain) Lookup(ctx context.Context, key string) (Record, error) {
	for _, d := range c {
		rec, err := d.Lookup(ctx, key)
		if err == nil {
			return rec, nil
		}
		if !common.IsStore(err, common.KeyNotFound) {
			return Record{}, err
		}
	}
	return Record{}, common.NewStoreErr("Record", common.KeyNotFound, key)
}

// Announce implements the Registrar interface.
func (c Chain) Announce(ctx context.Context, rec Record) error {
	for _, d := range c {
		if r, ok := d.(Registrar); ok {
			if err := r.Announce(ctx, rec); err != nil {
				return err
			}
		}
	}
	return nil
}
