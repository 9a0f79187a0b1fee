package auth

import "strconv"

func userSubject(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

func parseUserSubject(subject string) (uint, error) {
	id, err := strconv.ParseUint(subject, 10, 64)
	return uint(id), err
}
