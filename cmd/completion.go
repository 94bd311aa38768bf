package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_horizen() {
    local cur prev words cword
    _init_completion || return

    local commands="setup passwd disable forget status timeout keys export import completion help"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        keys)
            if [[ $cword -eq 2 ]]; then
                COMPREPLY=($(compgen -W "set rm ls" -- "$cur"))
            else
                COMPREPLY=($(compgen -W "openai anthropic mistral" -- "$cur"))
            fi
            ;;
        export)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-o -sections -encrypt" -- "$cur"))
            else
                _filedir
            fi
            ;;
        import)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-sections -chats -links -widgets -backup -force" -- "$cur"))
            else
                _filedir
            fi
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}
complete -F _horizen horizen
`

const zshCompletion = `#compdef horizen

_horizen() {
    local -a commands
    commands=(
        'setup:Enable password protection'
        'passwd:Change the password'
        'disable:Disable password protection'
        'forget:Reset protection, deleting stored API keys'
        'status:Show protection state'
        'timeout:Set the session idle timeout'
        'keys:Manage provider API keys'
        'export:Write a backup document'
        'import:Apply a backup document'
        'completion:Output shell completion script'
        'help:Show help'
    )

    if (( CURRENT == 2 )); then
        _describe 'command' commands
        return
    fi

    case "$words[2]" in
        keys)
            if (( CURRENT == 3 )); then
                _values 'subcommand' set rm ls
            else
                _values 'provider' openai anthropic mistral
            fi
            ;;
        export|import)
            _files
            ;;
        completion)
            _values 'shell' bash zsh fish
            ;;
    esac
}

_horizen "$@"
`

const fishCompletion = `complete -c horizen -f
complete -c horizen -n '__fish_use_subcommand' -a setup -d 'Enable password protection'
complete -c horizen -n '__fish_use_subcommand' -a passwd -d 'Change the password'
complete -c horizen -n '__fish_use_subcommand' -a disable -d 'Disable password protection'
complete -c horizen -n '__fish_use_subcommand' -a forget -d 'Reset protection, deleting stored API keys'
complete -c horizen -n '__fish_use_subcommand' -a status -d 'Show protection state'
complete -c horizen -n '__fish_use_subcommand' -a timeout -d 'Set the session idle timeout'
complete -c horizen -n '__fish_use_subcommand' -a keys -d 'Manage provider API keys'
complete -c horizen -n '__fish_use_subcommand' -a export -d 'Write a backup document'
complete -c horizen -n '__fish_use_subcommand' -a import -d 'Apply a backup document'
complete -c horizen -n '__fish_use_subcommand' -a completion -d 'Output shell completion script'
complete -c horizen -n '__fish_seen_subcommand_from keys' -a 'set rm ls'
complete -c horizen -n '__fish_seen_subcommand_from completion' -a 'bash zsh fish'
complete -c horizen -n '__fish_seen_subcommand_from export import' -F
`
