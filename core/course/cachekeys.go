package course

import "fmt"

// cache keys of the public listings

func SubjectsKey() string {
	return "all_subjects"
}

// CoursesKey is the key of the course listing of a subject; subjectID 0 lists all courses.
func CoursesKey(subjectID int64) string {
	if subjectID == 0 {
		return "all_courses"
	}
	return fmt.Sprintf("subject_%d_courses", subjectID)
}
