package user

// Account is a registered user's durable identity record.
type Account struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Credential string `json:"-"`
	Profile
}

// Profile holds the optional fields supplied at registration.
type Profile struct {
	Email        string `json:"email"`
	Age          int    `json:"age"`
	Gender       string `json:"gender"`
	MobileNumber string `json:"mobile_number"`
	Status       string `json:"status,omitempty"`
}
