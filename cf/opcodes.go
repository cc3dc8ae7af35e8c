// Package cf is the stack form of method code: JVM bytecode instructions,
// their symbolic execution into IR and their emission through a
// MethodVisitor.
package cf

import "fmt"

// Opcode is a JVM bytecode opcode.
type Opcode uint8

// Constants
const (
	ACONST_NULL Opcode = 0x01
	ICONST_M1   Opcode = 0x02
	ICONST_0    Opcode = 0x03
	ICONST_1    Opcode = 0x04
	ICONST_2    Opcode = 0x05
	ICONST_3    Opcode = 0x06
	ICONST_4    Opcode = 0x07
	ICONST_5    Opcode = 0x08
	LCONST_0    Opcode = 0x09
	LCONST_1    Opcode = 0x0a
	FCONST_0    Opcode = 0x0b
	FCONST_1    Opcode = 0x0c
	FCONST_2    Opcode = 0x0d
	DCONST_0    Opcode = 0x0e
	DCONST_1    Opcode = 0x0f
	BIPUSH      Opcode = 0x10
	SIPUSH      Opcode = 0x11
	LDC         Opcode = 0x12
	LDC2_W      Opcode = 0x14
)

// Locals
const (
	ILOAD  Opcode = 0x15
	LLOAD  Opcode = 0x16
	FLOAD  Opcode = 0x17
	DLOAD  Opcode = 0x18
	ALOAD  Opcode = 0x19
	ISTORE Opcode = 0x36
	LSTORE Opcode = 0x37
	FSTORE Opcode = 0x38
	DSTORE Opcode = 0x39
	ASTORE Opcode = 0x3a
)

// Arrays
const (
	IALOAD  Opcode = 0x2e
	LALOAD  Opcode = 0x2f
	FALOAD  Opcode = 0x30
	DALOAD  Opcode = 0x31
	AALOAD  Opcode = 0x32
	BALOAD  Opcode = 0x33 // byte and boolean
	CALOAD  Opcode = 0x34
	SALOAD  Opcode = 0x35
	IASTORE Opcode = 0x4f
	LASTORE Opcode = 0x50
	FASTORE Opcode = 0x51
	DASTORE Opcode = 0x52
	AASTORE Opcode = 0x53
	BASTORE Opcode = 0x54 // byte and boolean
	CASTORE Opcode = 0x55
	SASTORE Opcode = 0x56
)

// Stack
const (
	POP  Opcode = 0x57
	POP2 Opcode = 0x58
	DUP  Opcode = 0x59
)

// Returns
const (
	IRETURN Opcode = 0xac
	LRETURN Opcode = 0xad
	FRETURN Opcode = 0xae
	DRETURN Opcode = 0xaf
	ARETURN Opcode = 0xb0
	RETURN  Opcode = 0xb1
)

// Fields, invokes and allocation
const (
	GETSTATIC       Opcode = 0xb2
	PUTSTATIC       Opcode = 0xb3
	GETFIELD        Opcode = 0xb4
	PUTFIELD        Opcode = 0xb5
	INVOKEVIRTUAL   Opcode = 0xb6
	INVOKESPECIAL   Opcode = 0xb7
	INVOKESTATIC    Opcode = 0xb8
	INVOKEINTERFACE Opcode = 0xb9
	NEW             Opcode = 0xbb
)

var opcodeNames = map[Opcode]string{
	ACONST_NULL: "ACONST_NULL", ICONST_M1: "ICONST_M1", ICONST_0: "ICONST_0", ICONST_1: "ICONST_1",
	ICONST_2: "ICONST_2", ICONST_3: "ICONST_3", ICONST_4: "ICONST_4",
	ICONST_5: "ICONST_5", LCONST_0: "LCONST_0", LCONST_1: "LCONST_1",
	FCONST_0: "FCONST_0", FCONST_1: "FCONST_1", FCONST_2: "FCONST_2",
	DCONST_0: "DCONST_0", DCONST_1: "DCONST_1",
	BIPUSH: "BIPUSH", SIPUSH: "SIPUSH", LDC: "LDC", LDC2_W: "LDC2_W",

	ILOAD: "ILOAD", LLOAD: "LLOAD", FLOAD: "FLOAD", DLOAD: "DLOAD", ALOAD: "ALOAD",
	ISTORE: "ISTORE", LSTORE: "LSTORE", FSTORE: "FSTORE", DSTORE: "DSTORE", ASTORE: "ASTORE",

	IALOAD: "IALOAD", LALOAD: "LALOAD", FALOAD: "FALOAD", DALOAD: "DALOAD",
	AALOAD: "AALOAD", BALOAD: "BALOAD", CALOAD: "CALOAD", SALOAD: "SALOAD",
	IASTORE: "IASTORE", LASTORE: "LASTORE", FASTORE: "FASTORE", DASTORE: "DASTORE",
	AASTORE: "AASTORE", BASTORE: "BASTORE", CASTORE: "CASTORE", SASTORE: "SASTORE",

	POP: "POP", POP2: "POP2", DUP: "DUP",

	IRETURN: "IRETURN", LRETURN: "LRETURN", FRETURN: "FRETURN",
	DRETURN: "DRETURN", ARETURN: "ARETURN", RETURN: "RETURN",

	GETSTATIC: "GETSTATIC", PUTSTATIC: "PUTSTATIC", GETFIELD: "GETFIELD", PUTFIELD: "PUTFIELD",
	INVOKEVIRTUAL: "INVOKEVIRTUAL", INVOKESPECIAL: "INVOKESPECIAL",
	INVOKESTATIC: "INVOKESTATIC", INVOKEINTERFACE: "INVOKEINTERFACE",
	NEW: "NEW",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE_%02X", uint8(op))
}
