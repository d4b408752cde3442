// Package bencodex serializes values into the canonical ordered-key binary
// form Chain-N uses for action plain values. The encoding is deterministic:
// dictionary keys are emitted in byte-wise sorted order, so equal values
// always produce equal bytes.
//
// Wire grammar:
//
//	null        n
//	boolean     t / f
//	integer     i<decimal digits>e
//	byte string <byte length>:<raw bytes>
//	text        u<utf-8 byte length>:<utf-8 bytes>
//	list        l<values...>e
//	dictionary  d<key><value>...e
//
// Only text dictionary keys are supported; the chain's action values never
// use binary keys.
package bencodex

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"strconv"
)

// Dict is a dictionary with text keys. Keys are sorted on encode.
type Dict map[string]interface{}

// List is an ordered sequence of values.
type List []interface{}

// Encode serializes v. Supported types: nil, bool, int, int64, uint64,
// *big.Int, []byte, string, List, []interface{} and Dict.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustEncode is Encode for values known to contain only supported types.
func MustEncode(v interface{}) []byte {
	b, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}

func encode(buf *bytes.Buffer, v interface{}) error {
	switch x := v.(type) {
	case nil:
		buf.WriteByte('n')
	case bool:
		if x {
			buf.WriteByte('t')
		} else {
			buf.WriteByte('f')
		}
	case int:
		encodeInt(buf, strconv.FormatInt(int64(x), 10))
	case int64:
		encodeInt(buf, strconv.FormatInt(x, 10))
	case uint64:
		encodeInt(buf, strconv.FormatUint(x, 10))
	case *big.Int:
		if x == nil {
			return fmt.Errorf("bencodex: nil *big.Int")
		}
		encodeInt(buf, x.Text(10))
	case []byte:
		buf.WriteString(strconv.Itoa(len(x)))
		buf.WriteByte(':')
		buf.Write(x)
	case string:
		buf.WriteByte('u')
		buf.WriteString(strconv.Itoa(len(x)))
		buf.WriteByte(':')
		buf.WriteString(x)
	case List:
		return encodeList(buf, x)
	case []interface{}:
		return encodeList(buf, x)
	case Dict:
		return encodeDict(buf, x)
	default:
		return fmt.Errorf("bencodex: unsupported type %T", v)
	}
	return nil
}

func encodeInt(buf *bytes.Buffer, digits string) {
	buf.WriteByte('i')
	buf.WriteString(digits)
	buf.WriteByte('e')
}

func encodeList(buf *bytes.Buffer, items []interface{}) error {
	buf.WriteByte('l')
	for _, item := range items {
		if err := encode(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte('e')
	return nil
}

func encodeDict(buf *bytes.Buffer, d Dict) error {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('d')
	for _, k := range keys {
		if err := encode(buf, k); err != nil {
			return err
		}
		if err := encode(buf, d[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('e')
	return nil
}
