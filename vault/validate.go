package vault

import (
	"unicode"
	"unicode/utf8"
)

func validateText(value, label string, allowControl bool) error {
	if value == "" {
		return validationErrorf("%s must not be empty", label)
	}
	if len(value) > MaxFieldLength {
		return validationErrorf("%s exceeds maximum length of %d", label, MaxFieldLength)
	}
	if !utf8.ValidString(value) {
		return validationErrorf("%s contains invalid UTF-8", label)
	}
	if !allowControl {
		for _, r := range value {
			if unicode.IsControl(r) {
				return validationErrorf("%s contains control character", label)
			}
		}
	}
	return nil
}

func validateRecordID(id string) error {
	if id == "" {
		return validationErrorf("record id must not be empty")
	}
	if len(id) > MaxIDLength {
		return validationErrorf("record id exceeds maximum length of %d", MaxIDLength)
	}
	if !utf8.ValidString(id) {
		return validationErrorf("record id contains invalid UTF-8")
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return validationErrorf("record id contains whitespace or control character")
		}
	}
	return nil
}

func validateTags(tags []string) error {
	if len(tags) > MaxTagCount {
		return validationErrorf("tag count %d exceeds maximum of %d", len(tags), MaxTagCount)
	}
	for _, t := range tags {
		if len(t) > MaxTagLength {
			return validationErrorf("tag exceeds maximum length of %d", MaxTagLength)
		}
		if err := validateText(t, "tag", false); err != nil {
			return err
		}
	}
	return nil
}

// validateRecord checks a complete record. Passwords may contain any
// printable or control character; values themselves never appear in errors.
func validateRecord(r Record) error {
	if err := validateRecordID(r.ID); err != nil {
		return err
	}
	if err := validateText(r.Title, "title", false); err != nil {
		return err
	}
	if err := validateText(r.Username, "username", false); err != nil {
		return err
	}
	if err := validateText(r.Password, "password", true); err != nil {
		return err
	}
	return validateTags(r.Tags)
}
