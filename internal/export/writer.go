package export

import (
	"context"
	"io"
)

// WriterDestination writes the artifact to an io.Writer such as stdout.
type WriterDestination struct {
	W    io.Writer
	Name string
}

func (d *WriterDestination) Write(_ context.Context, data []byte) error {
	_, err := d.W.Write(data)
	return err
}

func (d *WriterDestination) String() string { return d.Name }
