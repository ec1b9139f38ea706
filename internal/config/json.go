package config

import (
	"fmt"
	"strings"

	"github.com/valyala/fastjson"
)

// decodeJSON fills the fields present in data. Unknown keys are ignored.
func decodeJSON(data []byte, c *Config) error {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return err
	}
	if _, err := v.Object(); err != nil {
		return err
	}

	for _, f := range []struct {
		dst  *string
		keys []string
	}{
		{&c.Log.Level, []string{"log", "level"}},
		{&c.Log.Format, []string{"log", "format"}},
		{&c.Cut.UnknownEvents, []string{"cut", "unknown_events"}},
		{&c.Output.Compression, []string{"output", "compression"}},
		{&c.Output.Report, []string{"output", "report"}},
	} {
		x := v.Get(f.keys...)
		if x == nil {
			continue
		}
		b, err := x.StringBytes()
		if err != nil {
			return fmt.Errorf("%s: %w", strings.Join(f.keys, "."), err)
		}
		*f.dst = string(b)
	}

	for _, f := range []struct {
		dst  *int
		keys []string
	}{
		{&c.Cut.ReadBuffer, []string{"cut", "read_buffer"}},
		{&c.Output.WriteBuffer, []string{"output", "write_buffer"}},
	} {
		x := v.Get(f.keys...)
		if x == nil {
			continue
		}
		n, err := x.Int()
		if err != nil {
			return fmt.Errorf("%s: %w", strings.Join(f.keys, "."), err)
		}
		*f.dst = n
	}

	if x := v.Get("cut", "progress_every"); x != nil {
		n, err := x.Uint64()
		if err != nil {
			return fmt.Errorf("cut.progress_every: %w", err)
		}
		c.Cut.ProgressEvery = n
	}
	return nil
}
