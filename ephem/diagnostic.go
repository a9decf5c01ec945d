package ephem

import (
	"errors"
	"fmt"
	"strings"
)

// Short diagnostic codes.
const (
	CodeIDNotFound        = "IDCODENOTFOUND"
	CodeNameNotFound      = "NAMENOTFOUND"
	CodeInsufficientData  = "SPKINSUFFDATA"
	CodeNoOrientationData = "NOORIENTATIONDATA"
	CodeUnknownFrame      = "UNKNOWNFRAME"
	CodeVariableNotFound  = "KERNELVARNOTFOUND"
	CodeBadKernel         = "BADKERNEL"
	CodeNoSuchFile        = "NOSUCHFILE"
	CodeFileNotLoaded     = "NOLOADEDFILES"
	CodeInvalidValue      = "INVALIDVALUE"
)

// Diagnostic is the error value engines return. Short is a stable code,
// Long a message specific to the call, Explain a one-line description of
// the code.
type Diagnostic struct {
	Op      string
	Short   string
	Long    string
	Explain string
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	if d.Op != "" {
		b.WriteString(d.Op)
		b.WriteString(": ")
	}
	b.WriteString("ENGINE(")
	b.WriteString(d.Short)
	b.WriteString(")")
	if d.Long != "" {
		b.WriteString(" -- ")
		b.WriteString(d.Long)
	}
	return b.String()
}

var explanations = map[string]string{
	CodeIDNotFound:        "No name is associated with the identifier code.",
	CodeNameNotFound:      "The name could not be translated into an identifier code.",
	CodeInsufficientData:  "Insufficient ephemeris data has been loaded.",
	CodeNoOrientationData: "Insufficient orientation data has been loaded.",
	CodeUnknownFrame:      "The reference frame is not recognised.",
	CodeVariableNotFound:  "The kernel variable is not present in the pool.",
	CodeBadKernel:         "The kernel file is malformed.",
	CodeNoSuchFile:        "The file does not exist or cannot be read.",
	CodeFileNotLoaded:     "The file is not loaded.",
	CodeInvalidValue:      "An argument has an invalid value.",
}

// Diagnose builds a Diagnostic for op with the given short code and a
// formatted long message.
func Diagnose(op, short, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Op:      op,
		Short:   short,
		Long:    fmt.Sprintf(format, args...),
		Explain: explanations[short],
	}
}

// HasCode reports whether err carries a Diagnostic with the given short code.
func HasCode(err error, short string) bool {
	var d *Diagnostic
	return errors.As(err, &d) && d.Short == short
}
