package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	Version           = "1.0"
	SaltSize          = 32
	IVSize            = aes.BlockSize
	KeySize           = 32
	DefaultIterations = 100_000
)

// Envelope is the serialized result of Encrypt. Binary fields are base64 in JSON.
type Envelope struct {
	Version string `json:"version"`
	Salt    []byte `json:"salt"`
	IV      []byte `json:"iv"`
	Data    []byte `json:"data"`
	HMAC    []byte `json:"hmac"`
}

// Marshal encodes the envelope as JSON.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Parse decodes and structurally validates a JSON envelope.
func Parse(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.Join(ErrInvalidEnvelope, err)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (e *Envelope) validate() error {
	if e.Version != Version {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, e.Version)
	}
	switch {
	case len(e.Salt) == 0:
		return fmt.Errorf("%w: missing salt", ErrInvalidEnvelope)
	case len(e.IV) != IVSize:
		return fmt.Errorf("%w: iv must be %d bytes", ErrInvalidEnvelope, IVSize)
	case len(e.Data) == 0 || len(e.Data)%aes.BlockSize != 0:
		return fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrInvalidEnvelope)
	case len(e.HMAC) != sha256.Size:
		return fmt.Errorf("%w: hmac must be %d bytes", ErrInvalidEnvelope, sha256.Size)
	}
	return nil
}

// Cipher seals and opens envelopes. The zero value is not usable, use New.
type Cipher struct {
	iterations int
	rand       io.Reader
}

// Option configures a Cipher.
type Option func(*Cipher)

// WithIterations overrides the PBKDF2 iteration count used for new envelopes
// and for opening them. Non-positive values are ignored.
func WithIterations(n int) Option {
	return func(c *Cipher) {
		if n > 0 {
			c.iterations = n
		}
	}
}

// WithRandom sets the source of salts and IVs.
func WithRandom(r io.Reader) Option {
	return func(c *Cipher) {
		if r != nil {
			c.rand = r
		}
	}
}

// New creates a Cipher with DefaultIterations.
func New(opts ...Option) *Cipher {
	c := &Cipher{
		iterations: DefaultIterations,
		rand:       rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt seals plaintext under password. Empty plaintext is allowed.
func (c *Cipher) Encrypt(plaintext []byte, password string) (*Envelope, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}

	salt := make([]byte, SaltSize)
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(c.rand, salt); err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}

	key := c.deriveKey(password, salt)
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}

	data := pad(plaintext, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(data, data)

	return &Envelope{
		Version: Version,
		Salt:    salt,
		IV:      iv,
		Data:    data,
		HMAC:    sign(key, data),
	}, nil
}

// Decrypt opens an envelope. A wrong password or any modification of the
// ciphertext or tag yields ErrIntegrity.
func (c *Cipher) Decrypt(e *Envelope, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if e == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrInvalidEnvelope)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}

	key := c.deriveKey(password, e.Salt)
	defer clearBytes(key)

	if !hmac.Equal(sign(key, e.Data), e.HMAC) {
		return nil, ErrIntegrity
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}

	out := make([]byte, len(e.Data))
	cipher.NewCBCDecrypter(block, e.IV).CryptBlocks(out, e.Data)

	plaintext, err := unpad(out, aes.BlockSize)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// Seal encrypts plaintext and returns the JSON envelope.
func (c *Cipher) Seal(plaintext []byte, password string) ([]byte, error) {
	e, err := c.Encrypt(plaintext, password)
	if err != nil {
		return nil, err
	}
	return e.Marshal()
}

// Open parses a JSON envelope and decrypts it.
func (c *Cipher) Open(data []byte, password string) ([]byte, error) {
	e, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(e, password)
}

// Hash returns the lowercase hex SHA-256 digest of input.
func Hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func (c *Cipher) deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, c.iterations, KeySize, sha256.New)
}

func sign(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
