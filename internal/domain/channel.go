package domain

// ChannelID names both text rooms and voice channels; the server treats
// them as opaque broadcast-group keys, the relational store owns their meta.
type ChannelID string
