package grading

import "strconv"

// Question is a minimal view of an exam question needed for marking.
// Keep this in sync with whatever fields the exam store uses.
type Question struct {
	Text          string
	CorrectOption string
	Marks         int
}

// GradedAnswer is the per-question audit record persisted with a
// submission. It retains both the student's and the correct answer
// regardless of outcome.
type GradedAnswer struct {
	QuestionIndex int     `json:"question_index"`
	QuestionText  string  `json:"question_text"`
	StudentAnswer string  `json:"student_answer"`
	CorrectAnswer string  `json:"correct_answer"`
	IsCorrect     bool    `json:"is_correct"`
	MarksObtained float64 `json:"marks_obtained"`
	MaxMarks      int     `json:"max_marks"`
}

// AnswersEqual compares a student's selection to the stored correct
// option. The comparison is attempted numerically first and falls back
// to string equality when either side does not parse as an integer.
// The two-step order is a compatibility shim for option encodings that
// differ between client and storage ("2" vs 2 vs "B"); do not collapse
// it to a single mode.
func AnswersEqual(student, correct string) bool {
	si, serr := strconv.Atoi(student)
	ci, cerr := strconv.Atoi(correct)
	if serr == nil && cerr == nil {
		return si == ci
	}
	return student == correct
}

// Mark grades an objective answer sheet against the question list in
// definition order. Answers are keyed by question index rendered as a
// decimal string; a missing key is treated as incorrect, never as an
// error. Returns the audit records and the summed marks obtained.
func Mark(questions []Question, answers map[string]string) ([]GradedAnswer, float64) {
	graded := make([]GradedAnswer, 0, len(questions))
	total := 0.0
	for i, q := range questions {
		student, answered := answers[strconv.Itoa(i)]

		correct := false
		if answered {
			correct = AnswersEqual(student, q.CorrectOption)
		}
		obtained := 0.0
		if correct {
			obtained = float64(q.Marks)
		}

		graded = append(graded, GradedAnswer{
			QuestionIndex: i,
			QuestionText:  q.Text,
			StudentAnswer: student,
			CorrectAnswer: q.CorrectOption,
			IsCorrect:     correct,
			MarksObtained: obtained,
			MaxMarks:      q.Marks,
		})
		total += obtained
	}
	return graded, total
}

// Total recomputes the grand total from stored audit records. A
// submission's marks_obtained must always equal this sum.
func Total(answers []GradedAnswer) float64 {
	t := 0.0
	for _, a := range answers {
		t += a.MarksObtained
	}
	return t
}
