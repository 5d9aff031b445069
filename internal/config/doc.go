// Package config handles configuration loading for the skill host.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package validates skill and flow references at load time.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SKILLHOST_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/skillhost/host.yaml
//  3. ~/.config/skillhost/host.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	skills:
//	  - id: echo
//	    app_secret: "${ECHO_SKILL_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Database:
//
//	database:
//	  path: "/var/lib/skillhost/state.db"
//
// Bot notice texts (all optional, library defaults apply):
//
//	bot:
//	  welcome_text: "Hello and welcome!"
//	  not_understood_text: "Didn't get that"
//	  skill_ended_text: "The skill has ended"
//	  skill_failure_text: "Sorry, the skill could not be reached. Please try again."
//
// Skills and flows:
//
//	skills:
//	  - id: echo
//	    endpoint: "ws://localhost:8480/skill"
//	    app_id: "root-bot"
//	    app_secret: "${ECHO_SKILL_SECRET}"
//
//	flows:
//	  - key: SendAsIs
//	    skill: echo
//	  - key: SendAsIsWithValues
//	    skill: echo
//	    semantic_action:
//	      name: BookFlight
//	      entities:
//	        bookingInfo:
//	          Destination: NY
//	          Origin: SEA
//	          TravelDate: Tomorrow
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Database path presence
//   - Skill id uniqueness and endpoint presence
//   - Flow keys referencing configured skills
//   - Semantic action names when a decoration is configured
package config
