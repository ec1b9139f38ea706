package ftf

import "fmt"

// ArgType is the 4-bit argument type tag.
type ArgType uint8

const (
	ArgNull    ArgType = 0
	ArgInt32   ArgType = 1
	ArgUint32  ArgType = 2
	ArgInt64   ArgType = 3
	ArgUint64  ArgType = 4
	ArgDouble  ArgType = 5
	ArgString  ArgType = 6
	ArgPointer ArgType = 7
	ArgKoid    ArgType = 8
	ArgBool    ArgType = 9
)

// Argument is one key/value pair attached to an event.
//
// Numeric values of every width are kept in Value as raw bits; Str holds the
// value of string arguments. Arguments of a type this package does not know
// keep their payload words in Raw so they can be re-encoded unchanged.
type Argument struct {
	Type  ArgType
	Name  StringRef
	Value uint64
	Str   StringRef
	Raw   []byte
}

func NullArg(name StringRef) Argument { return Argument{Type: ArgNull, Name: name} }

func Int32Arg(name StringRef, v int32) Argument {
	return Argument{Type: ArgInt32, Name: name, Value: uint64(uint32(v))}
}

func Uint32Arg(name StringRef, v uint32) Argument {
	return Argument{Type: ArgUint32, Name: name, Value: uint64(v)}
}

func Int64Arg(name StringRef, v int64) Argument {
	return Argument{Type: ArgInt64, Name: name, Value: uint64(v)}
}

func Uint64Arg(name StringRef, v uint64) Argument {
	return Argument{Type: ArgUint64, Name: name, Value: v}
}

func DoubleArg(name StringRef, v float64) Argument {
	return Argument{Type: ArgDouble, Name: name, Value: float64bits(v)}
}

func StringArg(name, value StringRef) Argument {
	return Argument{Type: ArgString, Name: name, Str: value}
}

func PointerArg(name StringRef, p uint64) Argument {
	return Argument{Type: ArgPointer, Name: name, Value: p}
}

func KoidArg(name StringRef, koid uint64) Argument {
	return Argument{Type: ArgKoid, Name: name, Value: koid}
}

func BoolArg(name StringRef, b bool) Argument {
	a := Argument{Type: ArgBool, Name: name}
	if b {
		a.Value = 1
	}
	return a
}

// Int returns the value of signed integer arguments.
func (a Argument) Int() int64 {
	if a.Type == ArgInt32 {
		return int64(int32(uint32(a.Value)))
	}
	return int64(a.Value)
}

func (a Argument) Float() float64 { return float64frombits(a.Value) }

func (a Argument) Bool() bool { return a.Value&1 == 1 }

// valueWords is the number of payload words after the inline name.
func (a Argument) valueWords() int {
	switch a.Type {
	case ArgInt64, ArgUint64, ArgDouble, ArgPointer, ArgKoid:
		return 1
	case ArgString:
		return a.Str.words()
	case ArgNull, ArgInt32, ArgUint32, ArgBool:
		return 0
	default:
		return paddedWords(len(a.Raw))
	}
}

func (a Argument) sizeWords() int {
	return 1 + a.Name.words() + a.valueWords()
}

func (a Argument) encode(e *encoder) {
	v := uint64(a.Type)&0xF |
		uint64(a.sizeWords()&0xFFF)<<4 |
		uint64(a.Name.field())<<16
	switch a.Type {
	case ArgInt32, ArgUint32, ArgNull:
		v |= (a.Value & 0xFFFFFFFF) << 32
	case ArgBool:
		v |= (a.Value & 1) << 32
	case ArgString:
		v |= uint64(a.Str.field()) << 32
	case ArgInt64, ArgUint64, ArgDouble, ArgPointer, ArgKoid:
	default:
		v |= (a.Value & 0xFFFFFFFF) << 32
	}
	e.word(v)
	e.stringRef(a.Name)
	switch a.Type {
	case ArgInt64, ArgUint64, ArgDouble, ArgPointer, ArgKoid:
		e.word(a.Value)
	case ArgString:
		e.stringRef(a.Str)
	case ArgNull, ArgInt32, ArgUint32, ArgBool:
	default:
		e.text(string(a.Raw))
	}
}

// decodeArg reads one argument. The size field is authoritative: the decoder
// is left at the argument's declared end.
func decodeArg(d *decoder) (Argument, error) {
	start := d.off
	v, err := d.word()
	if err != nil {
		return Argument{}, err
	}
	size := int(v>>4) & 0xFFF
	if size == 0 {
		return Argument{}, fmt.Errorf("%w: argument at byte %d has zero size", ErrMalformed, start)
	}
	end := start + size*WordSize
	if end > len(d.rec) {
		return Argument{}, fmt.Errorf("%w: argument at byte %d overruns record", ErrMalformed, start)
	}

	a := Argument{Type: ArgType(v & 0xF)}
	if a.Name, err = d.stringRef(uint16(v >> 16)); err != nil {
		return Argument{}, err
	}
	switch a.Type {
	case ArgNull, ArgInt32, ArgUint32:
		a.Value = v >> 32
	case ArgBool:
		a.Value = (v >> 32) & 1
	case ArgInt64, ArgUint64, ArgDouble, ArgPointer, ArgKoid:
		if a.Value, err = d.word(); err != nil {
			return Argument{}, err
		}
	case ArgString:
		if a.Str, err = d.stringRef(uint16(v >> 32)); err != nil {
			return Argument{}, err
		}
	default:
		if d.off > end {
			return Argument{}, fmt.Errorf("%w: argument at byte %d overruns its size", ErrMalformed, start)
		}
		a.Value = v >> 32
		a.Raw = append([]byte(nil), d.rec[d.off:end]...)
	}
	if d.off > end {
		return Argument{}, fmt.Errorf("%w: argument at byte %d overruns its size", ErrMalformed, start)
	}
	d.off = end
	return a, nil
}
