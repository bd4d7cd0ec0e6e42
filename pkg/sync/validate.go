package sync

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/obsync/obsync/pkg/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError reports a schema failure with per-field details.
type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("push payload validation failed: %d field(s)", len(e.Details))
}

// validatePush checks a push request against the schema and collects
// per-field details for the error envelope.
func validatePush(req *PushRequest) *ValidationError {
	details := make(map[string]string)

	if err := validate.Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				details[fe.Namespace()] = fmt.Sprintf("failed %q constraint", fe.Tag())
			}
		} else {
			details["request"] = err.Error()
		}
	}

	for i, op := range req.Ops {
		if op.OpType != "" && !model.OpType(op.OpType).IsValid() {
			details[fmt.Sprintf("ops[%d].opType", i)] = fmt.Sprintf("unknown op type %q", op.OpType)
		}
	}

	if len(details) == 0 {
		return nil
	}
	return &ValidationError{Details: details}
}
