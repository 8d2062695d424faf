package klog

import "time"

// Fields is a chainable builder for the standard key/value pairs attached to
// log lines across the kernel and controller. Mirrors the teacher's
// StandardFields pattern: each method returns the same map, so calls chain.
type Fields map[string]interface{}

// NewFields returns an empty field set ready for chaining.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(kind, name string) Fields {
	f["resource_type"] = kind
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) CycleID(id uint64) Fields {
	f["cycle_id"] = id
	return f
}

func (f Fields) ShardID(id uint32) Fields {
	f["shard_id"] = id
	return f
}

func (f Fields) HookID(id uint64) Fields {
	f["hook_id"] = id
	return f
}

func (f Fields) SnapshotHash(hash [32]byte) Fields {
	f["snapshot_hash"] = hashHex(hash)
	return f
}

// KV flattens the field set into an alternating key/value slice suitable for
// logr.Logger.Info/Error's variadic keysAndValues parameter.
func (f Fields) KV() []interface{} {
	out := make([]interface{}, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}

func hashHex(h [32]byte) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 64)
	for i, b := range h {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0x0f]
	}
	return string(buf)
}
