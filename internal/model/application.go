package model

import "time"

const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
)

// Application is a submitted grant application.
type Application struct {
	ID                  int64      `json:"id"`
	StudentID           string     `json:"studentId"`
	LastName            string     `json:"lastName"`
	GivenName           string     `json:"givenName"`
	ExtName             string     `json:"extName"`
	Sex                 string     `json:"sex"`
	Birthdate           *time.Time `json:"birthdate"`
	ProgramName         string     `json:"programName"`
	YearLevel           string     `json:"yearLevel"`
	FatherName          string     `json:"fatherName"`
	MotherName          string     `json:"motherName"`
	FamilyMonthlyIncome float64    `json:"familyMonthlyIncome"`
	IncomeRange         string     `json:"incomeRange"`
	Province            string     `json:"province"`
	Municipality        string     `json:"municipality"`
	StreetBarangay      string     `json:"streetBarangay"`
	ZipCode             string     `json:"zipCode"`
	ContactNumber       string     `json:"contactNumber"`
	Email               string     `json:"email"`
	PhotoPath           *string    `json:"photoPath"`
	IsPWD               bool       `json:"isPwd"`
	IsIndigenous        bool       `json:"isIndigenous"`
	Status              string     `json:"status"`
	SubmittedAt         time.Time  `json:"submittedAt"`
}

// ApplicationRequest is the intake payload, sent as JSON or form fields.
type ApplicationRequest struct {
	StudentID           string  `json:"studentId" form:"studentId"`
	LastName            string  `json:"lastName" form:"lastName"`
	GivenName           string  `json:"givenName" form:"givenName"`
	ExtName             string  `json:"extName" form:"extName"`
	Sex                 string  `json:"sex" form:"sex"`
	Birthdate           string  `json:"birthdate" form:"birthdate"`
	ProgramName         string  `json:"programName" form:"programName"`
	YearLevel           string  `json:"yearLevel" form:"yearLevel"`
	FatherName          string  `json:"fatherName" form:"fatherName"`
	MotherName          string  `json:"motherName" form:"motherName"`
	FamilyMonthlyIncome float64 `json:"familyMonthlyIncome" form:"familyMonthlyIncome"`
	IncomeRange         string  `json:"incomeRange" form:"incomeRange"`
	Province            string  `json:"province" form:"province"`
	Municipality        string  `json:"municipality" form:"municipality"`
	StreetBarangay      string  `json:"streetBarangay" form:"streetBarangay"`
	ZipCode             string  `json:"zipCode" form:"zipCode"`
	ContactNumber       string  `json:"contactNumber" form:"contactNumber"`
	Email               string  `json:"email" form:"email"`
	IsPWD               bool    `json:"isPwd" form:"isPwd"`
	IsIndigenous        bool    `json:"isIndigenous" form:"isIndigenous"`
	SubmittedAt         string  `json:"submittedAt" form:"submittedAt"`
}

// ApprovalResult is returned after an application becomes a student login.
type ApprovalResult struct {
	Student *Student `json:"student"`
	// TemporaryPassword is shown to the admin once so it can be relayed by
	// hand when neither email nor SMS went out.
	TemporaryPassword string            `json:"temporaryPassword"`
	Credentials       CredentialsResult `json:"credentials"`
}

// CredentialsRequest carries what is needed to notify an approved student.
type CredentialsRequest struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	StudentName string `json:"studentName"`
	AwardNumber string `json:"awardNumber"`
	Password    string `json:"password"`
	StudentID   string `json:"studentId"`
}

type CredentialsResult struct {
	Success   bool   `json:"success"`
	EmailSent bool   `json:"emailSent"`
	SMSSent   bool   `json:"smsSent"`
	Message   string `json:"message"`
}
