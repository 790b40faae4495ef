package ffms

import (
	"context"

	"github.com/pkg/errors"
)

// LoadOrBuild returns the index of source stored at indexPath. The index is
// rebuilt with an Indexer over reg and opts, and written back, when the file
// is missing, unreadable, from another format version or backend, or made
// for a different source.
func LoadOrBuild(ctx context.Context, reg *DecoderRegistry, source, indexPath string, opts ...IndexerOption) (*MediaIndex, error) {
	ix := NewIndexer(reg, opts...)
	expected := AnyDecoder
	if ix.opts.Backend != nil {
		expected = ix.opts.Backend.ID()
	}

	idx, err := ReadIndex(indexPath, expected)
	if err == nil {
		err = checkSource(idx, source)
	}
	if err == nil {
		return idx, nil
	}
	ix.log.WithError(err).WithField("index", indexPath).Info("rebuilding index")

	idx, err = ix.Run(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := idx.Write(indexPath); err != nil {
		return nil, err
	}
	return idx, nil
}

// checkSource fails with KindFileMismatch when idx was not built from source.
func checkSource(idx *MediaIndex, source string) error {
	ok, err := idx.Matches(source)
	if err != nil {
		return err
	}
	if !ok {
		return NewError(KindFileMismatch, "LoadOrBuild", "index does not match source file", errors.New(source))
	}
	return nil
}
