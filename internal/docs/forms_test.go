package docs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditForm_Diff(t *testing.T) {
	rec := FileRecord{FileID: 1, FileCategory: "가이드", FileVersion: MustParseVersion("1.2.0")}

	tests := []struct {
		name string
		form EditForm
		noop bool
	}{
		{"same everything", EditForm{Category: "가이드", Version: MustParseVersion("1.2.0")}, true},
		{"new category", EditForm{Category: "매뉴얼", Version: MustParseVersion("1.2.0")}, false},
		{"new version", EditForm{Category: "가이드", Version: MustParseVersion("1.2.1")}, false},
		{"replacement file only", EditForm{Category: "가이드", Version: MustParseVersion("1.2.0"), Path: "a.pdf"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.form.Diff(rec)
			if tc.noop {
				assert.ErrorIs(t, err, ErrNothingToChange)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestForms_Validate(t *testing.T) {
	assert.Error(t, CreateForm{Category: "가이드", Path: "a.pdf"}.Validate(), "group name is required")
	assert.Error(t, VersionForm{Path: "a.pdf"}.Validate(), "category is required")
	assert.Error(t, EditForm{}.Validate())
	assert.NoError(t, EditForm{Category: "가이드"}.Validate(), "edit needs no file")
}

func TestForms_Metadata(t *testing.T) {
	v := MustParseVersion("2.1.3")

	create := CreateForm{GroupName: "  handbook ", Category: "가이드", Version: v}.Metadata()
	assert.Equal(t, Metadata{GroupName: "handbook", FileCategory: "가이드", MajorVersion: 2, MinorVersion: 1, PatchVersion: 3}, create)

	// only the first upload names the group
	assert.Empty(t, VersionForm{Category: "가이드", Version: v}.Metadata().GroupName)
	assert.Empty(t, EditForm{Category: "가이드", Version: v}.Metadata().GroupName)
}
