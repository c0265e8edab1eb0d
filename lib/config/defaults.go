// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

// defaultConfigYAML is the built-in configuration. A system file only
// needs to name the keys it changes.
const defaultConfigYAML = `
accounts:
  trusted: rmake
  restricted: rmake-chroot

paths:
  capability_descriptor: /etc/chroot-caps
  tag_script: /root/tagscripts
  shell: /bin/sh
  target_executable: /usr/bin/conary
  server_script: /usr/share/rmake/rmake/worker/chroot/rootserver.py

environment:
  - HOME=/tmp
  - PATH=/bin:/usr/bin:/sbin:/usr/sbin

scratch_directories:
  - /tmp
  - /var/tmp

mounts:
  - source: proc
    target: /proc
    fstype: proc
  - source: devpts
    target: /dev/pts
    fstype: devpts
    options: mode=0620,ptmxmode=0666

devices:
  - {path: "null",  type: char, mode: "0666", major: 1, minor: 3}
  - {path: zero,    type: char, mode: "0666", major: 1, minor: 5}
  - {path: full,    type: char, mode: "0666", major: 1, minor: 7}
  - {path: random,  type: char, mode: "0666", major: 1, minor: 8}
  - {path: urandom, type: char, mode: "0666", major: 1, minor: 9}
  - {path: tty,     type: char, mode: "0666", major: 5, minor: 0}
  - {path: ptmx,    type: char, mode: "0666", major: 5, minor: 2}
  - {path: console, type: char, mode: "0600", major: 5, minor: 1}

symlinks:
  - {from: /dev/fd,     to: /proc/self/fd}
  - {from: /dev/stdin,  to: /proc/self/fd/0}
  - {from: /dev/stdout, to: /proc/self/fd/1}
  - {from: /dev/stderr, to: /proc/self/fd/2}
`
