package vdf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteText renders m in the indented text form of the format, with
// each scalar annotated by its kind. It is meant for humans reading a
// shortcuts file, not for round-tripping.
func WriteText(w io.Writer, m Map) error {
	bw := bufio.NewWriter(w)
	writeText(bw, m, 0)
	return bw.Flush()
}

func writeText(w *bufio.Writer, m Map, depth int) {
	indent := strings.Repeat("\t", depth)
	for _, f := range m {
		if f.Value.kind == KindMap {
			fmt.Fprintf(w, "%s%s\n%s{\n", indent, strconv.Quote(f.Key), indent)
			writeText(w, f.Value.m, depth+1)
			fmt.Fprintf(w, "%s}\n", indent)
			continue
		}
		fmt.Fprintf(w, "%s%s\t%s\t// %s\n", indent, strconv.Quote(f.Key), scalarText(f.Value), f.Value.kind)
	}
}

func scalarText(v Value) string {
	switch v.kind {
	case KindString, KindWideString:
		return strconv.Quote(v.Str())
	case KindInt32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case KindFloat32:
		return strconv.FormatFloat(float64(v.Float32()), 'g', -1, 32)
	case KindPointer, KindColor:
		return fmt.Sprintf("0x%08x", v.Uint32())
	case KindUint64:
		return strconv.FormatUint(v.num, 10)
	case KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	}
	return ""
}
