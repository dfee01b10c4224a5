package protocol

import "fmt"

// Opcode identifies a device command.
type Opcode byte

const (
	Ping                Opcode = 0x00
	Reset               Opcode = 0x01
	Abort               Opcode = 0x02
	Trigger             Opcode = 0x03
	ClearTimestamp      Opcode = 0x04
	GetVersion          Opcode = 0x14
	GetStatus           Opcode = 0x15
	GetTimestamp        Opcode = 0x16
	GetEepromLength     Opcode = 0x1E
	GetEepromByte       Opcode = 0x1F
	SetEepromByte       Opcode = 0x20
	GetGain             Opcode = 0x21
	SetGain             Opcode = 0x22
	GetOffset           Opcode = 0x23
	SetOffset           Opcode = 0x24
	GetExpTime          Opcode = 0x25
	SetExpTime          Opcode = 0x26
	GetExpMode          Opcode = 0x27
	SetExpMode          Opcode = 0x28
	GetVddMode          Opcode = 0x29
	SetVddMode          Opcode = 0x2A
	GetFlushMode        Opcode = 0x2B
	SetFlushMode        Opcode = 0x2C
	GetCleanMode        Opcode = 0x2D
	SetCleanMode        Opcode = 0x2E
	GetReadoutSpeed     Opcode = 0x2F
	SetReadoutSpeed     Opcode = 0x30
	GetReadoutMode      Opcode = 0x31
	SetReadoutMode      Opcode = 0x32
	GetNormReadoutDelay Opcode = 0x33
	SetNormReadoutDelay Opcode = 0x34
	GetRowCountOdd      Opcode = 0x35
	SetRowCountOdd      Opcode = 0x36
	GetRowCountEven     Opcode = 0x37
	SetRowCountEven     Opcode = 0x38
	GetTemp             Opcode = 0x39
	GetExpTimerCount    Opcode = 0x3A
	PowerSupplyOn       Opcode = 0x64
	PowerSupplyOff      Opcode = 0x65
	CcdVddOn            Opcode = 0x66
	CcdVddOff           Opcode = 0x67
	AdRead              Opcode = 0x68
	AdWrite             Opcode = 0x69
	TestPattern         Opcode = 0x6A
	GetDebugValue       Opcode = 0x6B
	GetEepromVidPid     Opcode = 0x6C
	SetEepromVidPid     Opcode = 0x6D
	EraseEeprom         Opcode = 0x6E
)

// Width is the size in bytes of a request argument or a response payload.
type Width int

const (
	Width0 Width = 0
	Width1 Width = 1
	Width2 Width = 2
	Width4 Width = 4
)

// Layout holds the fixed argument and payload widths of an opcode.
type Layout struct {
	Name     string
	Request  Width
	Response Width
}

var layouts = map[Opcode]Layout{
	Ping:                {"PING", Width0, Width0},
	Reset:               {"RESET", Width0, Width0},
	Abort:               {"ABORT", Width0, Width0},
	Trigger:             {"TRIGGER", Width0, Width0},
	ClearTimestamp:      {"CLEAR_TS", Width0, Width0},
	GetVersion:          {"GET_VERSION", Width0, Width4},
	GetStatus:           {"GET_STATUS", Width0, Width4},
	GetTimestamp:        {"GET_TIMESTAMP", Width0, Width4},
	GetEepromLength:     {"GET_EEPROM_LENGTH", Width0, Width1},
	GetEepromByte:       {"GET_EEPROM_BYTE", Width1, Width1},
	SetEepromByte:       {"SET_EEPROM_BYTE", Width2, Width0},
	GetGain:             {"GET_GAIN", Width0, Width1},
	SetGain:             {"SET_GAIN", Width1, Width0},
	GetOffset:           {"GET_OFFSET", Width0, Width2},
	SetOffset:           {"SET_OFFSET", Width2, Width0},
	GetExpTime:          {"GET_EXP_TIME", Width0, Width4},
	SetExpTime:          {"SET_EXP_TIME", Width4, Width0},
	GetExpMode:          {"GET_EXP_MODE", Width0, Width1},
	SetExpMode:          {"SET_EXP_MODE", Width1, Width2},
	GetVddMode:          {"GET_VDD_MODE", Width0, Width1},
	SetVddMode:          {"SET_VDD_MODE", Width1, Width0},
	GetFlushMode:        {"GET_FLUSH_MODE", Width0, Width1},
	SetFlushMode:        {"SET_FLUSH_MODE", Width1, Width0},
	GetCleanMode:        {"GET_CLEAN_MODE", Width0, Width1},
	SetCleanMode:        {"SET_CLEAN_MODE", Width1, Width0},
	GetReadoutSpeed:     {"GET_READOUT_SPD", Width0, Width1},
	SetReadoutSpeed:     {"SET_READOUT_SPD", Width1, Width0},
	GetReadoutMode:      {"GET_READOUT_MODE", Width0, Width1},
	SetReadoutMode:      {"SET_READOUT_MODE", Width1, Width0},
	GetNormReadoutDelay: {"GET_NORM_READOUT_DELAY", Width0, Width2},
	SetNormReadoutDelay: {"SET_NORM_READOUT_DELAY", Width2, Width0},
	GetRowCountOdd:      {"GET_ROW_COUNT_ODD", Width0, Width2},
	SetRowCountOdd:      {"SET_ROW_COUNT_ODD", Width2, Width0},
	GetRowCountEven:     {"GET_ROW_COUNT_EVEN", Width0, Width2},
	SetRowCountEven:     {"SET_ROW_COUNT_EVEN", Width2, Width0},
	GetTemp:             {"GET_TEMP", Width0, Width2},
	GetExpTimerCount:    {"GET_EXP_TIMER_COUNT", Width0, Width4},
	PowerSupplyOn:       {"PS_ON", Width0, Width0},
	PowerSupplyOff:      {"PS_OFF", Width0, Width0},
	CcdVddOn:            {"CCD_VDD_ON", Width0, Width0},
	CcdVddOff:           {"CCD_VDD_OFF", Width0, Width0},
	AdRead:              {"AD_READ", Width1, Width2},
	AdWrite:             {"AD_WRITE", Width2, Width0},
	TestPattern:         {"TEST_PATTERN", Width0, Width0},
	GetDebugValue:       {"GET_DEBUG_VALUE", Width1, Width2},
	GetEepromVidPid:     {"GET_EEPROM_VIDPID", Width0, Width4},
	SetEepromVidPid:     {"SET_EEPROM_VIDPID", Width4, Width0},
	EraseEeprom:         {"ERASE_EEPROM", Width0, Width0},
}

// LookupLayout returns the widths registered for op.
func LookupLayout(op Opcode) (Layout, error) {
	l, ok := layouts[op]
	if !ok {
		return Layout{}, &UnsupportedOpcodeError{Opcode: op}
	}
	return l, nil
}

func (op Opcode) String() string {
	if l, ok := layouts[op]; ok {
		return l.Name
	}
	return fmt.Sprintf("OPCODE(%#02x)", byte(op))
}
