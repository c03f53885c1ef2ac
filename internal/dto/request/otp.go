package request

type SendOTPRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
	Email string `json:"email,omitempty" validate:"omitempty,email,max=254"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
	OTP   string `json:"otp" validate:"required,max=16"`
}
