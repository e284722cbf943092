package models

// Camera is a feed registered in the archive. Root is the remote directory
// holding the camera's dated image folders and its videos folder.
type Camera struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
	Root string `json:"root" mapstructure:"root"`
}
