// Package fixtures holds the sample data sets used by tests, examples and the
// command line tool.
package fixtures

import (
	"github.com/asaidimu/go-aggregate/core/schema"
)

// StudentsPipelineJSON unwinds every student's courses, averages the grades
// of each course and regroups the averages by student name.
const StudentsPipelineJSON = `[
  {"$unwind": "$courses"},
  {"$project": {
    "name": true,
    "course": "$courses.course",
    "homework_avg": {"$avg": "$courses.homeworks"},
    "midterm_avg": {"$avg": "$courses.midterms"}
  }},
  {"$group": {
    "_id": "$name",
    "courses": {"$push": {
      "course": "$course",
      "homework_avg": "$homework_avg",
      "midterm_avg": "$midterm_avg"
    }}
  }}
]`

// ClassesCSV is a small grade sheet with one row per course.
const ClassesCSV = `course,midterm_1,midterm_2,midterm_3
15-388,85,95,90
15-213,70,80,75.5
15-251,100,90,
`

// ClassesRenames maps the ClassesCSV header onto the column names of the
// classes table: class and grade_1 to grade_3.
var ClassesRenames = map[string]string{
	"course":    "class",
	"midterm_1": "grade_1",
	"midterm_2": "grade_2",
	"midterm_3": "grade_3",
}

// Students returns three student documents, each enrolled in one or two
// courses with homework and midterm grades.
func Students() []schema.Document {
	return []schema.Document{
		student("s1", "Alice",
			course("15-388", []any{100, 90, 98}, []any{85, 95}),
			course("15-213", []any{80, 90}, []any{70}),
		),
		student("s2", "Bob",
			course("15-388", []any{75, 85, 95}, []any{80, 90}),
			course("15-251", []any{60, 70, 80}, []any{100}),
		),
		student("s3", "Eve",
			course("15-213", []any{100, 100}, []any{88, 92}),
		),
	}
}

// StudentAverages is the output of StudentsPipelineJSON over Students, in
// group encounter order.
func StudentAverages() []schema.Document {
	return []schema.Document{
		schema.NewDocument("_id", "Alice", "courses", []any{
			average("15-388", 96, 90),
			average("15-213", 85, 70),
		}),
		schema.NewDocument("_id", "Bob", "courses", []any{
			average("15-388", 85, 85),
			average("15-251", 70, 100),
		}),
		schema.NewDocument("_id", "Eve", "courses", []any{
			average("15-213", 100, 90),
		}),
	}
}

func student(id, name string, courses ...schema.Document) schema.Document {
	list := make([]any, len(courses))
	for i, c := range courses {
		list[i] = c
	}
	return schema.NewDocument("_id", id, "name", name, "courses", list)
}

func course(name string, homeworks, midterms []any) schema.Document {
	return schema.NewDocument("course", name, "homeworks", homeworks, "midterms", midterms)
}

func average(name string, homework, midterm float64) schema.Document {
	return schema.NewDocument("course", name, "homework_avg", homework, "midterm_avg", midterm)
}
