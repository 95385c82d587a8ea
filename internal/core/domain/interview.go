package domain

type InterviewBooking struct {
	RowID          int64  `json:"id"`
	CandidateName  string `json:"candidate_name"`
	CandidateEmail string `json:"candidate_email"`
	Date           string `json:"interview_date"`
	Time           string `json:"interview_time"`
}
