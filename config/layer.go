package config

import (
	"os"
	"path/filepath"
)

// mergeLayer merges a global and a project-local resource table: entries
// in local fully replace same-named entries from global.
func mergeLayer[T any](global, local map[string]T) map[string]T {
	merged := make(map[string]T, len(global)+len(local))
	for k, v := range global {
		merged[k] = v
	}
	for k, v := range local {
		merged[k] = v
	}
	return merged
}

// LoadPersonaTable layers personas from globalDir/personas and
// localDir/personas.
func LoadPersonaTable(globalDir, localDir string) (map[string]Persona, error) {
	global, err := LoadPersonas(filepath.Join(globalDir, "personas"))
	if err != nil {
		return nil, err
	}
	local, err := LoadPersonas(filepath.Join(localDir, "personas"))
	if err != nil {
		return nil, err
	}
	return mergeLayer(global, local), nil
}

// LoadSkillTable layers skills from globalDir/skills and localDir/skills.
func LoadSkillTable(globalDir, localDir string) (map[string]Skill, error) {
	global, err := LoadSkills(filepath.Join(globalDir, "skills"))
	if err != nil {
		return nil, err
	}
	local, err := LoadSkills(filepath.Join(localDir, "skills"))
	if err != nil {
		return nil, err
	}
	return mergeLayer(global, local), nil
}

// LoadAgentTable layers agents from globalDir/agents and localDir/agents.
func LoadAgentTable(globalDir, localDir string) (map[string]Agent, error) {
	global, err := LoadAgents(filepath.Join(globalDir, "agents"))
	if err != nil {
		return nil, err
	}
	local, err := LoadAgents(filepath.Join(localDir, "agents"))
	if err != nil {
		return nil, err
	}
	return mergeLayer(global, local), nil
}

// ConfigPath resolves the single root configuration file: a project-local
// config.json, if present, is used whole in place of the global one (it is
// one file, not merged per-entry).
func ConfigPath(globalDir, localDir string) string {
	localPath := filepath.Join(localDir, "config.json")
	if _, err := os.Stat(localPath); err == nil {
		return localPath
	}
	return filepath.Join(globalDir, "config.json")
}
