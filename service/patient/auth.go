package patient

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/razumed/clinic-server/cmd/models"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

var jwtSecretKey = []byte(os.Getenv("SECRET_KEY"))

func generateJWT(patientID uint, expirationMinutes int) (string, error) {
    claims := &jwt.RegisteredClaims{
        Subject:   fmt.Sprint(patientID),
        ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute * time.Duration(expirationMinutes))),
    }
    token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    return token.SignedString(jwtSecretKey)
}

func generateRefreshToken(patientID uint) (string, error) {
    b := make([]byte, 32)
    _, err := rand.Read(b)
    if err != nil {
        return "", err
    }

    // HMAC ties the token to the patient
    mac := hmac.New(sha256.New, []byte(os.Getenv("SECRET_KEY")))
    mac.Write([]byte(fmt.Sprintf("%d", patientID)))
    mac.Write(b)

    signature := mac.Sum(nil)
    return fmt.Sprintf("%d_%x_%x", patientID, b, signature), nil
}

func saveRefreshToken(db *gorm.DB, patientID uint, refreshToken string) error {
    expirationTime := time.Now().Add(30 * 24 * time.Hour)
    return db.Model(&models.Patient{}).Where("id = ?", patientID).Updates(map[string]interface{}{
        "refresh_token":            refreshToken,
        "refresh_token_expired_at": expirationTime,
    }).Error
}

// sendVerificationEmail sends the 6-digit code over SMTP.
func sendVerificationEmail(email, code string) error {
    smtpHost := os.Getenv("SMTP_HOST")
    smtpPort := os.Getenv("SMTP_PORT")
    smtpUser := os.Getenv("SMTP_USER")
    smtpPass := os.Getenv("SMTP_PASS")

    m := gomail.NewMessage()
    m.SetHeader("From", smtpUser)
    m.SetHeader("To", email)
    m.SetHeader("Subject", "Email Verification Code")
    m.SetBody("text/plain", fmt.Sprintf("Your verification code is: %s. Ignore this email if you did not request a verification code.", code))

    port, err := strconv.Atoi(smtpPort)
    if err != nil {
        return fmt.Errorf("invalid SMTP port: %v", err)
    }
    d := gomail.NewDialer(smtpHost, port, smtpUser, smtpPass)

    return d.DialAndSend(m)
}
