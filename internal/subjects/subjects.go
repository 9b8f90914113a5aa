// Package subjects holds the class, department, and subject catalogs
// used to validate student info and route question selection.
package subjects

import "strings"

// JuniorSubjects are offered to all JS classes.
var JuniorSubjects = []string{
	"Mathematics",
	"English Language",
	"English Studies",
	"Literature in English",
	"Basic Science",
	"Social Studies",
	"Christian Religious Studies",
	"Islamic Religious Studies",
	"Basic Technology",
	"Computer Studies",
	"French Language",
	"Agricultural Science",
	"Civic Education",
	"Physical and Health Education",
	"Fine Arts",
	"Creative Arts",
	"Music",
	"Business Studies",
	"Book-Keeping & Accounts",
	"Home Economics",
	"History",
}

// ScienceTechnicalSubjects are offered to SS classes in the science track.
var ScienceTechnicalSubjects = []string{
	"English Language",
	"General Mathematics",
	"Further Mathematics",
	"Physics",
	"Chemistry",
	"Biology",
	"Agricultural Science",
	"Technical Drawing",
	"Computer Science",
	"Civic Education",
	"Economics",
	"ICT",
	"Marketing",
	"Data Processing",
}

// ArtsCommercialSubjects are offered to SS classes in the arts track.
var ArtsCommercialSubjects = []string{
	"English Language",
	"General Mathematics",
	"Economics",
	"Literature-in-English",
	"Government",
	"History",
	"Christian Religious Studies",
	"Islamic Religious Studies",
	"Commerce",
	"Financial Accounting",
}

// ClassLevels lists the valid class codes, junior first.
var ClassLevels = []string{"JS1", "JS2", "JS3", "SS1", "SS2", "SS3"}

// Departments lists the senior-class tracks.
var Departments = []string{"Science & Technical", "Arts & Commercial"}

// ForClass returns the subjects available to a class, narrowed by
// department for senior classes. Unknown combinations return nil.
func ForClass(classLevel, department string) []string {
	switch {
	case strings.HasPrefix(classLevel, "JS"):
		return JuniorSubjects
	case strings.HasPrefix(classLevel, "SS"):
		switch department {
		case "Science & Technical":
			return ScienceTechnicalSubjects
		case "Arts & Commercial":
			return ArtsCommercialSubjects
		}
	}
	return nil
}

// RequiresDepartment reports whether a class level needs a department.
func RequiresDepartment(classLevel string) bool {
	return strings.HasPrefix(classLevel, "SS")
}

// ValidClass reports whether the class code is known.
func ValidClass(classLevel string) bool {
	for _, c := range ClassLevels {
		if c == classLevel {
			return true
		}
	}
	return false
}
