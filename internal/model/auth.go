package model

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StudentLoginRequest struct {
	AwardNumber string `json:"award_number"`
	Password    string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	Participant  Participant `json:"participant"`
	Student      *Student    `json:"student,omitempty"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
