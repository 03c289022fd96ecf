package imap

// Config for IMAP/SMTP transport.
type Config struct {
	ID       string `yaml:"id" json:"id"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Folder   string `yaml:"folder" json:"folder"`
	// PollSeconds is the delay between mailbox checks.
	PollSeconds int `yaml:"poll_seconds" json:"poll_seconds"`

	SMTPHost string `yaml:"smtp_host" json:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port" json:"smtp_port"`
	From     string `yaml:"from" json:"from"`
	Subject  string `yaml:"subject" json:"subject"`
}

func (c *Config) Defaults() {
	if c.Port == 0 {
		c.Port = 993
	}
	if c.Folder == "" {
		c.Folder = "INBOX"
	}
	if c.PollSeconds == 0 {
		c.PollSeconds = 30
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.ID == "" {
		c.ID = "email"
	}
	if c.SMTPHost == "" {
		c.SMTPHost = c.Host
	}
	if c.From == "" {
		c.From = c.Username
	}
	if c.Subject == "" {
		c.Subject = "bangbot reply"
	}
}

func (c *Config) Validate() error {
	if c.Host == "" || c.Username == "" || c.Password == "" {
		return Err("host, username, password are required")
	}
	if c.PollSeconds < 0 {
		return Err("poll_seconds cannot be negative")
	}
	return nil
}
