package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PrettyHandler writes each record as an indented JSON object. Fields keep
// the order they were logged in, after time, level and msg.
type PrettyHandler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	addSource bool

	attrs  []groupedAttr
	groups []string
}

type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	h := &PrettyHandler{w: w, mu: &sync.Mutex{}, level: slog.LevelInfo}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.addSource = opts.AddSource
	}
	return h
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	root := newObject()
	when := r.Time
	if when.IsZero() {
		when = time.Now()
	}
	root.set("time", when.Format(time.RFC3339Nano))
	root.set("level", r.Level.String())
	root.set("msg", r.Message)
	if h.addSource && r.PC != 0 {
		root.set("source", source(r.PC))
	}

	for _, ga := range h.attrs {
		root.within(ga.groups).add(ga.attr)
	}
	dst := root.within(h.groups)
	r.Attrs(func(a slog.Attr) bool {
		dst.add(a)
		return true
	})

	var buf bytes.Buffer
	root.write(&buf, 0)
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]groupedAttr(nil), h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, groupedAttr{groups: h.groups, attr: a})
	}
	return &clone
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// object is an insertion-ordered JSON object.
type object struct {
	keys []string
	vals map[string]any
}

func newObject() *object {
	return &object{vals: map[string]any{}}
}

func (o *object) set(k string, v any) {
	if _, ok := o.vals[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.vals[k] = v
}

func (o *object) within(groups []string) *object {
	cur := o
	for _, g := range groups {
		child, ok := cur.vals[g].(*object)
		if !ok {
			child = newObject()
			cur.set(g, child)
		}
		cur = child
	}
	return cur
}

func (o *object) add(a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		members := v.Group()
		if len(members) == 0 {
			return
		}
		dst := o
		if a.Key != "" {
			dst = o.within([]string{a.Key})
		}
		for _, m := range members {
			dst.add(m)
		}
		return
	}
	if a.Key == "" {
		return
	}
	o.set(a.Key, plain(v))
}

func (o *object) write(buf *bytes.Buffer, depth int) {
	if len(o.keys) == 0 {
		buf.WriteString("{}")
		return
	}
	indent := strings.Repeat("  ", depth+1)
	buf.WriteString("{\n")
	for i, k := range o.keys {
		buf.WriteString(indent)
		buf.WriteString(strconv.Quote(k))
		buf.WriteString(": ")
		switch v := o.vals[k].(type) {
		case *object:
			v.write(buf, depth+1)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				b = []byte(strconv.Quote(err.Error()))
			}
			buf.Write(b)
		}
		if i < len(o.keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString(strings.Repeat("  ", depth))
	buf.WriteByte('}')
}

func plain(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		if s, ok := v.Any().(interface{ String() string }); ok {
			return s.String()
		}
		return v.Any()
	default:
		return v.String()
	}
}

func source(pc uintptr) string {
	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if f.File == "" {
		return ""
	}
	file := f.File
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}
	return file + ":" + strconv.Itoa(f.Line)
}
