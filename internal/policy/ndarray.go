package policy

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	keyNDArray = []byte("__ndarray__")
	keyData    = []byte("data")
	keyDtype   = []byte("dtype")
	keyShape   = []byte("shape")
)

// ndarray is a dense array as numpy's msgpack extension lays it out.
type ndarray struct {
	Data  []byte
	Dtype string
	Shape []int
}

var (
	_ msgpack.CustomEncoder = (*ndarray)(nil)
	_ msgpack.CustomDecoder = (*ndarray)(nil)
)

func uint8Array(data []byte, shape ...int) *ndarray {
	return &ndarray{Data: data, Dtype: "|u1", Shape: shape}
}

func float64Array(v []float64) *ndarray {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(x))
	}
	return &ndarray{Data: b, Dtype: "<f8", Shape: []int{len(v)}}
}

func float32Array(v []float32) *ndarray {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(x))
	}
	return &ndarray{Data: b, Dtype: "<f4", Shape: []int{len(v)}}
}

func (a *ndarray) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(4); err != nil {
		return err
	}
	if err := enc.EncodeBytes(keyNDArray); err != nil {
		return err
	}
	if err := enc.EncodeBool(true); err != nil {
		return err
	}
	if err := enc.EncodeBytes(keyData); err != nil {
		return err
	}
	if err := enc.EncodeBytes(a.Data); err != nil {
		return err
	}
	if err := enc.EncodeBytes(keyDtype); err != nil {
		return err
	}
	if err := enc.EncodeString(a.Dtype); err != nil {
		return err
	}
	if err := enc.EncodeBytes(keyShape); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(a.Shape)); err != nil {
		return err
	}
	for _, n := range a.Shape {
		if err := enc.EncodeInt(int64(n)); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsgpack accepts string or binary keys.
func (a *ndarray) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: nil array", ErrBadResponse)
	}
	tagged := false
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch key {
		case string(keyNDArray):
			if tagged, err = dec.DecodeBool(); err != nil {
				return err
			}
		case string(keyData):
			if a.Data, err = dec.DecodeBytes(); err != nil {
				return err
			}
		case string(keyDtype):
			if a.Dtype, err = dec.DecodeString(); err != nil {
				return err
			}
		case string(keyShape):
			m, err := dec.DecodeArrayLen()
			if err != nil {
				return err
			}
			a.Shape = make([]int, 0, max(m, 0))
			for j := 0; j < m; j++ {
				d, err := dec.DecodeInt()
				if err != nil {
					return err
				}
				a.Shape = append(a.Shape, d)
			}
		default:
			if err := dec.Skip(); err != nil {
				return err
			}
		}
	}
	if !tagged {
		return fmt.Errorf("%w: map is not an ndarray", ErrBadResponse)
	}
	return nil
}

// size is the element count of Shape. Negative or overflowing dimensions
// are rejected.
func (a *ndarray) size() (int, error) {
	n := 1
	for _, d := range a.Shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension in shape %v", ErrBadResponse, a.Shape)
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("%w: shape %v overflows", ErrBadResponse, a.Shape)
		}
		n *= d
	}
	return n, nil
}

// Float64s converts a float array of either width and byte order.
func (a *ndarray) Float64s() ([]float64, error) {
	if len(a.Dtype) != 3 {
		return nil, fmt.Errorf("%w: unsupported dtype %q", ErrBadResponse, a.Dtype)
	}
	var order binary.ByteOrder = binary.LittleEndian
	switch a.Dtype[0] {
	case '<', '=', '|':
	case '>':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: unsupported dtype %q", ErrBadResponse, a.Dtype)
	}

	var width int
	switch a.Dtype[1:] {
	case "f8":
		width = 8
	case "f4":
		width = 4
	default:
		return nil, fmt.Errorf("%w: unsupported dtype %q", ErrBadResponse, a.Dtype)
	}

	n, err := a.size()
	if err != nil {
		return nil, err
	}
	if len(a.Data)%width != 0 || len(a.Data)/width != n {
		return nil, fmt.Errorf("%w: %d bytes for %d elements of %s", ErrBadResponse, len(a.Data), n, a.Dtype)
	}

	out := make([]float64, n)
	switch width {
	case 8:
		for i := range out {
			out[i] = math.Float64frombits(order.Uint64(a.Data[8*i:]))
		}
	case 4:
		for i := range out {
			out[i] = float64(math.Float32frombits(order.Uint32(a.Data[4*i:])))
		}
	}
	return out, nil
}
