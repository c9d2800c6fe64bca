package enums

import "strings"

// UserType distinguishes the two marketplace roles.
type UserType string

const (
	UserTypeFarmer UserType = "farmer"
	UserTypeBuyer  UserType = "buyer"
)

var userTypes = []UserType{UserTypeFarmer, UserTypeBuyer}

// String implements fmt.Stringer.
func (u UserType) String() string {
	return string(u)
}

func (u UserType) IsValid() bool {
	return member(userTypes, u)
}

// ParseUserType accepts the role name in any case, surrounded by whitespace.
func ParseUserType(value string) (UserType, error) {
	return parse("user type", userTypes, strings.ToLower(strings.TrimSpace(value)))
}
