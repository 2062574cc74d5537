package domain

// Finding is the structured result of classifying one batch.
// The three flags are independent: a batch may be a fire, contain questions,
// and carry a testimonial all at once.
type Finding struct {
	IsFire          bool
	FireText        string
	IsTestimonial   bool
	TestimonialText string
	Questions       []QuestionFinding
}

// QuestionFinding is one unanswered client question extracted from a batch.
type QuestionFinding struct {
	Text            string
	SourceMessageID string
	AuthorID        string
	ThreadID        string
}
