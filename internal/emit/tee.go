package emit

import (
	"metagen/internal/layout"
	"metagen/internal/meta"
	"metagen/internal/pipeline"
)

type tee []pipeline.Sink

// Tee returns a sink that forwards each record to every sink in order,
// stopping at the first error.
func Tee(sinks ...pipeline.Sink) pipeline.Sink {
	return tee(sinks)
}

func (t tee) Function(f *meta.FunctionRef) error {
	for _, s := range t {
		if err := s.Function(f); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Data(d *meta.DataRef) error {
	for _, s := range t {
		if err := s.Data(d); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Struct(st *layout.Struct) error {
	for _, s := range t {
		if err := s.Struct(st); err != nil {
			return err
		}
	}
	return nil
}
