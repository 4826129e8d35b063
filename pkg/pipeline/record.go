package pipeline

import (
	"github.com/go-playground/validator/v10"

	"github.com/admitkit/medmatch/pkg/errors"
)

// StagingRecord is one raw spreadsheet row awaiting resolution. Text
// fields carry whatever the human typed; resolution replaces them with
// entity ids on the resolved output record.
type StagingRecord struct {
	Row         int    `json:"row"`
	CollegeName string `json:"collegeName" validate:"required,min=3"`
	Address     string `json:"address"`
	State       string `json:"state" validate:"required,min=3"`
	Course      string `json:"course" validate:"required,min=3"`
	Category    string `json:"category" validate:"required,min=3"`
	Quota       string `json:"quota" validate:"required,min=3"`
	Year        int    `json:"year" validate:"required,gte=2000,lte=2100"`
	Round       int    `json:"round" validate:"required,gte=1,lte=20"`
	Rank        int    `json:"rank" validate:"required,gt=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRecord maps validator failures onto the row-level taxonomy:
// absent required fields are MissingField, everything else is
// InvalidFormat. The first failing field wins.
func validateRecord(rec *StagingRecord) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.NewRowError(rec.Row, "", errors.ErrInvalidFormat)
	}

	fe := verrs[0]
	if fe.Tag() == "required" {
		return errors.NewRowError(rec.Row, fe.Field(), errors.ErrMissingField)
	}
	return errors.NewRowError(rec.Row, fe.Field(), errors.ErrInvalidFormat)
}

// ResolvedRecord is one fully matched row: raw text replaced by entity
// ids, plus the rank aggregates computed for its group.
type ResolvedRecord struct {
	Row        int     `json:"row"`
	CollegeID  int64   `json:"collegeId"`
	StateID    int64   `json:"stateId"`
	CourseID   int64   `json:"courseId"`
	CategoryID int64   `json:"categoryId"`
	QuotaID    int64   `json:"quotaId"`
	Year       int     `json:"year"`
	Round      int     `json:"round"`
	Rank       int     `json:"rank"`
	Confidence float64 `json:"confidence"`

	OpeningRank int `json:"openingRank"`
	ClosingRank int `json:"closingRank"`
	Seats       int `json:"seats"`
}
