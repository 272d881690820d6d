package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// Параметры PBKDF2. Ключ выводится один раз при старте процесса,
// поэтому число итераций можно держать высоким.
const (
	deriveIterations = 600000
	deriveKeyLength  = 32
)

// DeriveKey выводит 32-байтный AES-256 ключ из произвольной парольной
// фразы через PBKDF2-SHA256. Одинаковая пара (passphrase, salt) всегда
// даёт одинаковый ключ: зашифрованные данные переживают перезапуск.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, deriveIterations, deriveKeyLength, sha256.New)
}
