package protocol

// Response codes carried in byte 2 of every ACK endpoint frame.
const (
	ACK  byte = 0x06
	NACK byte = 0x15
)

type ReadoutSpeed uint32

const (
	ReadoutSpeedNormal ReadoutSpeed = 0
	ReadoutSpeedHigh   ReadoutSpeed = 1
)

type ReadoutMode uint32

const (
	ReadoutModeDual   ReadoutMode = 0
	ReadoutModeSingle ReadoutMode = 1
	ReadoutModeOdd    ReadoutMode = 2
	ReadoutModeEven   ReadoutMode = 3
)

func (m ReadoutMode) Valid() bool {
	return m <= ReadoutModeEven
}

func (m ReadoutMode) String() string {
	switch m {
	case ReadoutModeDual:
		return "DUAL"
	case ReadoutModeSingle:
		return "SINGLE"
	case ReadoutModeOdd:
		return "ODD"
	case ReadoutModeEven:
		return "EVEN"
	default:
		return "UNKNOWN"
	}
}

type VddMode uint32

const (
	VddModeAuto VddMode = 0
	VddModeOn   VddMode = 1
	VddModeOff  VddMode = 2
)

type FlushMode uint32

const (
	FlushModeContinuous     FlushMode = 0
	FlushModeBeforeExposure FlushMode = 1
	FlushModeNever          FlushMode = 2
)

type CleanMode uint32

const (
	CleanModeEnabled  CleanMode = 0
	CleanModeDisabled CleanMode = 1
)

type ExposureMode uint32

const (
	ExposureModeNormal ExposureMode = 0
	ExposureModeBin2x2 ExposureMode = 1
)

type USBSpeed uint32

const (
	USBSpeedFull USBSpeed = 0
	USBSpeedHigh USBSpeed = 1
)

func (s USBSpeed) Valid() bool {
	return s <= USBSpeedHigh
}

func (s USBSpeed) String() string {
	switch s {
	case USBSpeedFull:
		return "FULL"
	case USBSpeedHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// AdRegister addresses the analog front-end registers reachable through AD_READ/AD_WRITE.
type AdRegister uint32

const (
	AdConfiguration AdRegister = 0
	AdMuxConfig     AdRegister = 1
	AdRedPGA        AdRegister = 2
	AdGreenPGA      AdRegister = 3
	AdBluePGA       AdRegister = 4
	AdRedOffset     AdRegister = 5
	AdGreenOffset   AdRegister = 6
	AdBlueOffset    AdRegister = 7
)

// AdWriteArgument packs an A/D register write: register in the top bits, 9-bit value below.
func AdWriteArgument(reg AdRegister, value uint32) uint32 {
	return uint32(reg)<<9 | value&0x1ff
}
